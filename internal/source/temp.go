package source

import "os"

// writeTemp stages a download when no cache is configured. The file
// lives in the OS temp dir and is not cleaned up here; workbook reads
// happen right after staging.
func writeTemp(body []byte) (string, error) {
	f, err := os.CreateTemp("", "cbic-*.xlsx")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(body); err != nil {
		return "", err
	}
	return f.Name(), nil
}
