package rule

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// ShareTokenAlphabet 分享 token 允许的字符（URL 安全），共 64 个.
const ShareTokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"

// registerBuiltin 注册项目内通用的校验规则.
//
//	share_token: 仅包含 URL 安全字符
//	blob_name:   单个路径元素，不含分隔符，且不是 "." 或 ".."
func registerBuiltin(v *validator.Validate) {
	_ = v.RegisterValidation("share_token", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}

		for _, r := range s {
			if !strings.ContainsRune(ShareTokenAlphabet, r) {
				return false
			}
		}

		return true
	})

	_ = v.RegisterValidation("blob_name", func(fl validator.FieldLevel) bool {
		return IsBlobName(fl.Field().String())
	})

	v.RegisterAlias("display_name", "required,max=500")
}

// IsBlobName 判断 name 是否为合法的单段文件名.
func IsBlobName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, "/\\\x00")
}
