// Package buildinfo carries version data set with -ldflags -X.
package buildinfo

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}

// UserAgent identifies outbound requests.
func UserAgent() string { return "wahook/" + Version }
