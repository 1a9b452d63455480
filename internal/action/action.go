// Package action names every operation an agent can ask the platform to
// perform. The strings are frozen: they are dispatch tags, trace-table
// action values, and LLM tool names all at once.
package action

const (
	SignUp             = "sign_up"
	SignUpProduct      = "sign_up_product"
	PurchaseProduct    = "purchase_product"
	Refresh            = "refresh"
	CreatePost         = "create_post"
	Repost             = "repost"
	QuotePost          = "quote_post"
	LikePost           = "like_post"
	UnlikePost         = "unlike_post"
	DislikePost        = "dislike_post"
	UndoDislikePost    = "undo_dislike_post"
	Follow             = "follow"
	Unfollow           = "unfollow"
	Mute               = "mute"
	Unmute             = "unmute"
	SearchPosts        = "search_posts"
	SearchUser         = "search_user"
	Trend              = "trend"
	CreateComment      = "create_comment"
	LikeComment        = "like_comment"
	UnlikeComment      = "unlike_comment"
	DislikeComment     = "dislike_comment"
	UndoDislikeComment = "undo_dislike_comment"
	DoNothing          = "do_nothing"
	Interview          = "interview"
	ReportPost         = "report_post"
	CreateGroup        = "create_group"
	JoinGroup          = "join_group"
	LeaveGroup         = "leave_group"
	SendToGroup        = "send_to_group"
	ListenFromGroup    = "listen_from_group"
)

// Control tags consumed by the platform loop itself. They never appear
// in traces or tool schemas.
const (
	UpdateRecTable = "update_rec_table"
	Exit           = "exit"
)

// All returns every agent-facing action in a stable order.
func All() []string {
	return []string{
		SignUp, SignUpProduct, PurchaseProduct, Refresh,
		CreatePost, Repost, QuotePost,
		LikePost, UnlikePost, DislikePost, UndoDislikePost,
		Follow, Unfollow, Mute, Unmute,
		SearchPosts, SearchUser, Trend,
		CreateComment, LikeComment, UnlikeComment, DislikeComment, UndoDislikeComment,
		DoNothing, Interview, ReportPost,
		CreateGroup, JoinGroup, LeaveGroup, SendToGroup, ListenFromGroup,
	}
}

// IsValid reports whether name is a known agent-facing action.
func IsValid(name string) bool {
	for _, a := range All() {
		if a == name {
			return true
		}
	}
	return false
}
