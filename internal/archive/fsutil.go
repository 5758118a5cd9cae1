package archive

import "os"

// openTruncate creates (or truncates) path for writing.
func openTruncate(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

// swapIntoPlace performs the final three steps of the safe-update
// protocol: rename original to a backup name, rename tmpPath to original,
// then remove the backup. If the first rename fails, the original archive
// is untouched. If the second rename fails, the backup is renamed back to
// the original name (best effort) so the original content stays visible,
// and the caller reports ArchiveBusy.
func swapIntoPlace(original, tmpPath string) error {
	backup := original + ".bak"
	if err := os.Rename(original, backup); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, original); err != nil {
		// best effort: restore the original so callers still see valid data
		_ = os.Rename(backup, original)
		return err
	}
	return os.Remove(backup)
}
