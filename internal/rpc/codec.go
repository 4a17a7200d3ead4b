package rpc

import (
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// wire — кодек тел запросов и ответов.
var wire = jsoniter.ConfigCompatibleWithStandardLibrary

// Params — упорядоченные параметры вызова.
//
// Каждый параметр хранится сырым JSON и декодируется задачей в нужный тип.
type Params []json.RawMessage

// EncodeParams сериализует параметры в JSON массив: (10, 15) → [10,15].
func EncodeParams(params []any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	return wire.Marshal(params)
}

// DecodeParams разбирает тело запроса.
func DecodeParams(body []byte) (Params, error) {
	var params Params
	if err := wire.Unmarshal(body, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeRequest, err)
	}
	// null разбирается в nil: это не список параметров
	if params == nil {
		return nil, fmt.Errorf("%w: expected JSON array, got %q", ErrDecodeRequest, truncate(body, 64))
	}
	return params, nil
}

// Len возвращает число параметров.
func (p Params) Len() int {
	return len(p)
}

// Decode декодирует i-й параметр в v.
func (p Params) Decode(i int, v any) error {
	if i < 0 || i >= len(p) {
		return fmt.Errorf("%w: index %d of %d", ErrParamMissing, i, len(p))
	}
	if err := wire.Unmarshal(p[i], v); err != nil {
		return fmt.Errorf("decode param %d: %w", i, err)
	}
	return nil
}

// Float возвращает i-й параметр как число.
func (p Params) Float(i int) (float64, error) {
	var v float64
	err := p.Decode(i, &v)
	return v, err
}

// Int возвращает i-й параметр как целое число.
func (p Params) Int(i int) (int64, error) {
	var v int64
	err := p.Decode(i, &v)
	return v, err
}

// String возвращает i-й параметр как строку.
func (p Params) String(i int) (string, error) {
	var v string
	err := p.Decode(i, &v)
	return v, err
}

// Values декодирует все параметры в значения без типа.
func (p Params) Values() ([]any, error) {
	values := make([]any, len(p))
	for i := range p {
		if err := p.Decode(i, &values[i]); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// Reply — тело ответа: один результат задачи в JSON.
type Reply []byte

// DecodeReply проверяет, что тело ответа — корректный JSON.
//
// Проверка идёт полным разбором: wire.Valid отвергает числа верхнего уровня.
func DecodeReply(body []byte) (Reply, error) {
	var v any
	if err := wire.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON %q", ErrDecodeReply, truncate(body, 64))
	}
	reply := make(Reply, len(body))
	copy(reply, body)
	return reply, nil
}

// Decode декодирует результат в v.
func (r Reply) Decode(v any) error {
	if err := wire.Unmarshal(r, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeReply, err)
	}
	return nil
}

// MarshalJSON встраивает результат как есть.
func (r Reply) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r Reply) String() string {
	return string(r)
}

// EncodeResult сериализует результат задачи.
func EncodeResult(result any) ([]byte, error) {
	return wire.Marshal(result)
}

// encodeError сериализует ошибку задачи как JSON строку.
func encodeError(err error) []byte {
	body, mErr := wire.Marshal(err.Error())
	if mErr != nil {
		return []byte(`"task failed"`)
	}
	return body
}

// decodeError извлекает текст ошибки из тела rpc.error.
func decodeError(body []byte) string {
	var msg string
	if err := wire.Unmarshal(body, &msg); err != nil {
		return string(truncate(body, 256))
	}
	return msg
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
