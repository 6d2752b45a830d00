package log

// Config describes the logging destinations and format.
type Config struct {
	Level  string // debug / info / warn / error
	Format string // json / text
	File   *FileOptions
}

// FileOptions enables rotated file output.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}
