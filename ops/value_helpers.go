package ops

import "github.com/baidu/anyflow/value"

func emptyValue() value.Value { return value.Empty() }
