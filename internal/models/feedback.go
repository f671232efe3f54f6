package models

// Feedback is one stored form submission. ID is assigned by the database.
type Feedback struct {
	ID       int64  `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	Mobile   string `db:"mobile" json:"mobile"`
	Feedback string `db:"feedback" json:"feedback"`
}
