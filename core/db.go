package core

// DBOrdering describes a single ORDER BY clause entry.
type DBOrdering struct {
	Field     string
	Ascending bool
}
