package compose

import "strconv"

// FormatMB renders a whole-mebibyte size for humans. Sizes of at least
// 1024 MB become integer gibibytes with a "G" suffix (truncating division,
// so 1024 and 1025 both render "1G"); smaller sizes keep the "M" suffix.
func FormatMB(sizeMB int) string {
	if sizeMB >= 1024 {
		return strconv.Itoa(sizeMB/1024) + "G"
	}
	return strconv.Itoa(sizeMB) + "M"
}
