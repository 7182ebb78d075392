package main

import "syncarena/cli"

// syncarena 入口：serve 启动权威服务端，connect 启动无界面客户端
func main() {
	cli.Execute()
}
