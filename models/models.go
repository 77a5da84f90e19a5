package models

type User struct {
	Username     string
	Email        string
	PasswordHash string // empty for external-provider accounts
	Provider     string // "" for local accounts, else e.g. "google"
	Experience   int
	Created      int64
}

// NoFileURL marks a note submitted without an attachment.
const NoFileURL = "#"

type Note struct {
	Id          string   `json:"id"`
	Title       string   `json:"title"`
	Subject     string   `json:"subject"`
	Levels      []string `json:"levels"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	FileURL     string   `json:"fileUrl"`
	FileName    string   `json:"fileName"`
	FileSize    int64    `json:"fileSize"`
	Likes       int      `json:"likes"`
	Created     int64    `json:"created"`
}

// Like is one ledger row per (note, user) pair. Rows are written once and
// never mutated; the conditional put at the store is the duplicate guard.
type Like struct {
	NoteId   string
	Username string
}

type SortOrder int

const (
	SortRecent SortOrder = iota
	SortLikes
)

// NoteFilter narrows a listing. Zero values mean no constraint.
type NoteFilter struct {
	Query   string // case-insensitive substring on the title
	Subject string // exact match
	Level   string // membership in the note's level set
	Sort    SortOrder
}
