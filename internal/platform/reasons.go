package platform

// Reply reason strings. Downstream analysis matches on these verbatim,
// so the spellings are frozen.
const (
	reasonUnknownAction = "Action matches no handler."

	reasonPostNotFound    = "Post not found."
	reasonCommentNotFound = "Comment not found."

	reasonRepostExists   = "Repost record already exists."
	reasonLikeExists     = "Like record already exists."
	reasonLikeMissing    = "Like record does not exist."
	reasonDislikeExists  = "Dislike record already exists."
	reasonDislikeMissing = "Dislike record does not exist."

	reasonSelfLikePost       = "Users are not allowed to like their own posts."
	reasonSelfDislikePost    = "Users are not allowed to dislike their own posts."
	reasonSelfLikeComment    = "Users are not allowed to like their own comments."
	reasonSelfDislikeComment = "Users are not allowed to dislike their own comments."

	reasonCommentLikeExists     = "Comment like record already exists."
	reasonCommentLikeMissing    = "Comment like record does not exist."
	reasonCommentDislikeExists  = "Comment dislike record already exists."
	reasonCommentDislikeMissing = "Comment dislike record does not exist."

	reasonFollowExists  = "Follow record already exists."
	reasonFollowMissing = "Follow record does not exist."
	reasonSelfFollow    = "Users cannot follow themselves."
	reasonMuteExists    = "Mute record already exists."
	reasonMuteMissing   = "Mute record does not exist."

	reasonNoPosts        = "No posts found."
	reasonNoTrending     = "No trending posts in the specified period."
	reasonNoPostMatches  = "No posts found matching the query."
	reasonNoUserMatches  = "No users found matching the query."
	reasonReportExists   = "Report record already exists."
	reasonProductExists  = "Product already exists."
	reasonProductMissing = "No such product."

	reasonGroupMissing   = "Group does not exist."
	reasonNotGroupMember = "User is not a member of this group."
	reasonAlreadyMember  = "User is already a member of this group."
)
