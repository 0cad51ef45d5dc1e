package config

var (
	Version    string = "dev"
	CommitHash string = ""
)

// IsProduction 判断是否为正式构建
// Version 为 "release" 且 CommitHash 不为空
func IsProduction() bool {
	return Version == "release" && CommitHash != ""
}
