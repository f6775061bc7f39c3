package protection

// Message is the part of a chat message the content filters inspect.
type Message struct {
	GuildID           string
	ChannelID         string
	MessageID         string
	AuthorID          string
	AuthorPermissions int64
	Content           string
	MentionUserIDs    []string
	MentionRoleIDs    []string
	MentionEveryone   bool
}

// Verdict is a filter decision. Action is only meaningful when ShouldAct is set.
type Verdict struct {
	Filter         string
	ShouldAct      bool
	Action         Punishment
	Reason         string
	URLs           []string
	TimeoutMinutes int
}
