// Package main 启动应用程序
package main

import "github.com/yeisme/dropvault/pkg/cmd"

//	@title			DropVault API
//	@version		1.0
//	@description	DropVault 是一个临时文件分享服务：上传文件获得分享 token，文件在过期后自动失效并被清理。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
