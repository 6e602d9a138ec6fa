package version

// Version is the build version of the binaries, set with
// -ldflags "-X github.com/ashourz/AlgoRoyale-sub002/internal/version.Version=1.2.3".
// "main" marks a development build.
var Version = "main"

// GetVersion returns the build version.
func GetVersion() string {
	return Version
}
