package prompts

import (
	"encoding/json"
	"fmt"
)

// noPostsText replaces the posts section when the feed comes back failed or
// empty.
const noPostsText = "After refreshing, there are no existing posts."

// noGroupsText replaces the groups section when no group channels exist.
const noGroupsText = "No groups."

// postsSectionTemplate's format verb is the refreshed posts as indented JSON.
const postsSectionTemplate = `After refreshing, you see some posts:
%s`

// groupsSectionTemplate format verbs: 1: the group directory, 2: the agent's
// joined group ids, 3: the messages per joined group, all compact JSON.
const groupsSectionTemplate = `There are many group chat channels: %s
You are already in these groups: %s
You have received these messages from them: %s
You can join the groups that interest you, leave groups you are already in,
and send messages to groups you have joined. You can only send messages to
groups you are already a member of.`

// envTemplate assembles the full observation: groups first, then posts, then
// a closing instruction that nudges agents away from like-only turns. Format
// verbs: 1: groups section, 2: posts section.
const envTemplate = `%s
%s
Pick the actions that best reflect your current inclination, based on your
profile and the content of the posts. Do not limit yourself to just liking
posts.`

// userMessageTemplate wraps the environment prompt into the user turn sent
// alongside the system message. The format verb is the environment prompt.
const userMessageTemplate = `Please perform social media actions after observing the platform environment.
Notice that you do not have to limit your actions to, for example, just
liking posts. Here is your social media environment:

%s`

// PostsSection renders a refresh reply into the posts half of the
// environment prompt. Nil replies, failed replies, and replies with no posts
// all collapse to a fixed no-posts line.
func PostsSection(reply map[string]any) string {
	posts, ok := replyField(reply, "posts")
	if !ok {
		return noPostsText
	}
	rendered, empty := indentedJSON(posts)
	if empty {
		return noPostsText
	}
	return fmt.Sprintf(postsSectionTemplate, rendered)
}

// GroupsSection renders a listen_from_group reply into the groups half of
// the environment prompt. When the reply is missing, failed, or the group
// directory is empty, the section collapses to a fixed no-groups line.
func GroupsSection(reply map[string]any) string {
	all, ok := replyField(reply, "all_groups")
	if !ok {
		return noGroupsText
	}
	directory, empty := compactJSON(all)
	if empty {
		return noGroupsText
	}

	joined, _ := replyField(reply, "joined_groups")
	joinedJSON, empty := compactJSON(joined)
	if empty {
		joinedJSON = "[]"
	}
	messages, _ := replyField(reply, "messages")
	messagesJSON, empty := compactJSON(messages)
	if empty {
		messagesJSON = "{}"
	}
	return fmt.Sprintf(groupsSectionTemplate, directory, joinedJSON, messagesJSON)
}

// EnvPrompt combines the groups and posts sections into the observation an
// agent reasons over for one turn.
func EnvPrompt(postsReply, groupsReply map[string]any) string {
	return fmt.Sprintf(envTemplate, GroupsSection(groupsReply), PostsSection(postsReply))
}

// UserMessage wraps a rendered environment prompt into the user-role message
// of the agent's turn.
func UserMessage(envPrompt string) string {
	return fmt.Sprintf(userMessageTemplate, envPrompt)
}

// replyField extracts a named field from a platform reply, reporting false
// when the reply is missing, failed, or lacks the field.
func replyField(reply map[string]any, key string) (any, bool) {
	if reply == nil {
		return nil, false
	}
	if ok, _ := reply["success"].(bool); !ok {
		return nil, false
	}
	v, present := reply[key]
	return v, present
}

// compactJSON renders v as single-line JSON. The second return reports
// whether the value is empty: nil, an empty list, or an empty object.
func compactJSON(v any) (string, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", true
	}
	s := string(raw)
	return s, s == "null" || s == "{}" || s == "[]"
}

// indentedJSON is compactJSON with four-space indentation, used for the
// posts listing where agents read post content.
func indentedJSON(v any) (string, bool) {
	raw, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", true
	}
	s := string(raw)
	return s, s == "null" || s == "{}" || s == "[]"
}
