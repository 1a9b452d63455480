package store

// PostKind classifies a post row by its nullable columns.
type PostKind int

const (
	// KindCommon is an original post: no parent, own content.
	KindCommon PostKind = iota
	// KindRepost points at a root and carries no content of its own.
	// Engagement on a repost is forwarded to the root.
	KindRepost
	// KindQuote points at a root but carries quote text and keeps its
	// own engagement counters.
	KindQuote
)

func (k PostKind) String() string {
	switch k {
	case KindRepost:
		return "repost"
	case KindQuote:
		return "quote"
	default:
		return "common"
	}
}

// User is a row of the user table. UserID and AgentID are assigned the
// same value at sign-up so both sides of the channel share one identity
// space.
type User struct {
	UserID        int64
	AgentID       int64
	UserName      string
	Name          string
	Bio           string
	CreatedAt     string
	NumFollowings int64
	NumFollowers  int64
}

// Post is a row of the post table. Timestamps are opaque clock values:
// an integer tick rendered as a string, or a formatted datetime.
type Post struct {
	PostID         int64
	UserID         int64
	OriginalPostID *int64
	Content        string
	QuoteContent   *string
	CreatedAt      string
	NumLikes       int64
	NumDislikes    int64
	NumShares      int64
	NumReports     int64
}

// Kind derives the post type from the nullable columns.
func (p *Post) Kind() PostKind {
	switch {
	case p.OriginalPostID == nil:
		return KindCommon
	case p.QuoteContent == nil:
		return KindRepost
	default:
		return KindQuote
	}
}

// Comment is a row of the comment table.
type Comment struct {
	CommentID   int64
	PostID      int64
	UserID      int64
	Content     string
	CreatedAt   string
	NumLikes    int64
	NumDislikes int64
}

// Group is a row of the chat_group table.
type Group struct {
	GroupID   int64
	Name      string
	CreatedAt string
}

// GroupMessage is a row of the group_messages table.
type GroupMessage struct {
	MessageID int64
	GroupID   int64
	SenderID  int64
	Content   string
	SentAt    string
}

// Product is a row of the product table.
type Product struct {
	ProductID   int64
	ProductName string
	Sales       int64
}

// TraceRow is one audit-log entry. Info holds the minimum payload needed
// to replay the action and is stored as JSON.
type TraceRow struct {
	TraceID   int64
	UserID    int64
	CreatedAt string
	Action    string
	Info      map[string]any
}

// RecRow is one (user, post) candidate pair in the rec table.
type RecRow struct {
	UserID int64
	PostID int64
}
