package store

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"im_storage/internal/model"
	"im_storage/pkg/constants"
	"im_storage/pkg/errorx"
)

var (
	validate      *validator.Validate
	trans         ut.Translator
	validatorOnce sync.Once
)

// initValidator 初始化校验器与中文翻译
// 错误信息中的字段名使用 json tag，与调用方传参保持一致
func initValidator() {
	validatorOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		zhT := zh.New()
		uni := ut.New(zhT, zhT)
		trans, _ = uni.GetTranslator("zh")
		_ = zh_translations.RegisterDefaultTranslations(validate, trans)
	})
}

// validateStruct 校验结构体，失败返回 CodeInvalidParam
func validateStruct(s any) error {
	initValidator()
	if err := validate.Struct(s); err != nil {
		return translateErr(err)
	}
	return nil
}

// validateIDs 校验 ID 均为正数
func validateIDs(ids ...int64) error {
	initValidator()
	for _, id := range ids {
		if err := validate.Var(id, "gt=0"); err != nil {
			return errorx.Wrapf(err, errorx.CodeInvalidParam, "ID 必须为正数: %d", id)
		}
	}
	return nil
}

// validatePageSize 分页大小必须在 [1, 200]
func validatePageSize(size int) error {
	if size < constants.MIN_PAGE_SIZE || size > constants.MAX_PAGE_SIZE {
		return errorx.Newf(errorx.CodeInvalidPageSize, "分页大小必须在 [%d, %d] 之间: %d",
			constants.MIN_PAGE_SIZE, constants.MAX_PAGE_SIZE, size)
	}
	return nil
}

func validatePageRequest(req model.PageRequest) error {
	return validatePageSize(req.Size)
}

func translateErr(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "参数校验失败")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return errorx.Wrap(err, errorx.CodeInvalidParam, strings.Join(msgs, "; "))
}
