// Package database provides the data access layer for the application.
//
// The connection setup and schema migration live in database.go; domain
// operations are grouped into sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations
//	└── users/           # Identity records and Google account linking
//
// Each sub-package provides a Repository type:
//
//	db, err := database.NewDatabase("./secrets.db")
//	usersRepo := users.NewRepository(db.DB)
//	user, err := usersRepo.GetByUsername("alice")
//
// Delegated Gmail credentials are handled by the credstore package, which
// layers encryption over the same connection.
package database
