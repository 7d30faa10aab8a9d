// Package version 记录 llm-gateway 的构建信息。
// 版本号可以通过 -ldflags 注入，未注入时回退到 Go 工具链写入的 vcs 信息：
//
//	go build -ldflags "-X github.com/lgc202/llm-gateway/version.gitVersion=v1.2.0"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"
)

const devVersion = "v0.0.0-dev"

var (
	// gitVersion 是语义化的版本号，格式为 vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]
	gitVersion = ""
	// gitCommit 是 $(git rev-parse HEAD) 的输出
	gitCommit = ""
	// gitTreeState 为 clean 或 dirty
	gitTreeState = ""
	// buildDate 是 ISO8601 格式的构建时间
	buildDate = ""
)

// Info 包含了版本信息
type Info struct {
	GitVersion   string `json:"gitVersion" yaml:"gitVersion"`
	GitCommit    string `json:"gitCommit,omitempty" yaml:"gitCommit,omitempty"`
	GitTreeState string `json:"gitTreeState,omitempty" yaml:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate,omitempty" yaml:"buildDate,omitempty"`
	GoVersion    string `json:"goVersion" yaml:"goVersion"`
	Compiler     string `json:"compiler" yaml:"compiler"`
	Platform     string `json:"platform" yaml:"platform"`
}

// String 返回人性化的版本信息字符串
func (info Info) String() string {
	if info.GitTreeState == "dirty" {
		return info.GitVersion + "-dirty"
	}
	return info.GitVersion
}

// ShortString 返回简短的版本字符串，仅包含版本号
func (info Info) ShortString() string {
	return info.GitVersion
}

// UserAgent 用于出站 HTTP 请求
func (info Info) UserAgent() string {
	return "llm-gateway/" + info.GitVersion
}

// ToJSONIndent 以格式化的 JSON 格式返回版本信息
func (info Info) ToJSONIndent() (string, error) {
	s, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal version info: %w", err)
	}
	return string(s), nil
}

func (info Info) ToYAML() (string, error) {
	s, err := yaml.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to marshal version info: %w", err)
	}
	return string(s), nil
}

// Text 以对齐的两列文本返回版本信息，空字段省略
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	for _, row := range [][2]string{
		{"gitVersion:", info.GitVersion},
		{"gitCommit:", info.GitCommit},
		{"gitTreeState:", info.GitTreeState},
		{"buildDate:", info.BuildDate},
		{"goVersion:", info.GoVersion},
		{"compiler:", info.Compiler},
		{"platform:", info.Platform},
	} {
		if row[1] != "" {
			table.AddRow(row[0], row[1])
		}
	}
	return table.String()
}

// Get 返回当前二进制的版本信息
func Get() Info {
	info := Info{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	if info.GitVersion == "" {
		info.GitVersion = devVersion
	}
	return info
}

// fillFromBuildInfo 只补齐 ldflags 没有注入的字段
func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.GitVersion == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.GitVersion = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			if info.GitTreeState == "" {
				if s.Value == "true" {
					info.GitTreeState = "dirty"
				} else {
					info.GitTreeState = "clean"
				}
			}
		}
	}
}
