package main

import "github.com/huanfeng/pkgscope/cmd"

func main() {
	cmd.Execute()
}
