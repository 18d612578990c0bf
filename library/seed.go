package library

// DefaultAdminID is the account created on a fresh data directory.
const DefaultAdminID = "admin"

var sampleBooks = []NewBook{
	{Title: "Python Programming", Author: "John Smith", Category: "Programming", Copies: 3},
	{Title: "Data Structures", Author: "Jane Doe", Category: "Computer Science", Copies: 2},
	{Title: "Web Development", Author: "Mike Johnson", Category: "Programming", Copies: 2},
	{Title: "Machine Learning", Author: "Sarah Wilson", Category: "AI/ML", Copies: 1},
	{Title: "Database Systems", Author: "Robert Brown", Category: "Computer Science", Copies: 2},
}

// seedIfEmpty populates a data directory that has neither a catalog nor a
// user file.
func (lm *LibraryManager) seedIfEmpty() error {
	for _, f := range []*recordFile{lm.catalog.file, lm.users.file} {
		exists, err := f.exists()
		if err != nil || exists {
			return err
		}
	}

	for _, nb := range sampleBooks {
		if _, err := lm.catalog.Add(nb); err != nil {
			return err
		}
	}
	if _, err := lm.users.Register(DefaultAdminID, "System Administrator", "admin@library.com", RoleAdmin); err != nil {
		return err
	}
	if err := lm.catalog.Persist(); err != nil {
		return err
	}
	if err := lm.users.Persist(); err != nil {
		return err
	}
	lm.logger.Info("seeded new data directory", "dir", lm.cfg.DataDir, "books", len(sampleBooks), "admin", DefaultAdminID)
	return nil
}
