// gateway 是 llm-gateway 的命令行入口：启动 HTTP 服务，或直接调用、探测 provider。
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
