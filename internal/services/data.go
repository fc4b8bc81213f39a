package services

import "society/internal/core"

// Backup and restore are not offered against a hosted database. These
// answer with a notice and touch nothing.

func (s *Service) ExportData() core.Notice {
	return core.Notice{Message: "Export not available with cloud database"}
}

func (s *Service) ImportData() core.Notice {
	return core.Notice{Message: "Import not available with cloud database"}
}

func (s *Service) ResetData() core.Notice {
	return core.Notice{Message: "Reset not available with cloud database"}
}
