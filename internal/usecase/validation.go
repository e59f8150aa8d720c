package usecase

import "errors"

// 入力DTOの検証（validator.Validatorが満たす）
type InputValidator interface {
	Validate(i interface{}) error
}

func validateInput(v InputValidator, in interface{}) error {
	if v == nil {
		return nil
	}
	err := v.Validate(in)
	if err == nil {
		return nil
	}
	var fe interface{ Messages() []string }
	if errors.As(err, &fe) {
		return Validation("Validation failed", fe.Messages()...)
	}
	return Validation("Validation failed", err.Error())
}
