package file

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"ohlc-streamer/src/models"

	"github.com/tidwall/gjson"
)

// Trade line keys
const (
	keySymbol    = "sym"
	keyPrice     = "P"
	keyQuantity  = "Q"
	keyTimestamp = "TS2"
)

var errNotObject = errors.New("trade line is not a JSON object")

// -----------------------------------------------------------------------------

// ParseTrade reads one trade line such as
// {"sym":"AAPL","P":"189.5","Q":100,"TS2":1700000000000}.
// Values may be JSON numbers or numeric strings.
func ParseTrade(line string) (models.MTrade, error) {
	if !gjson.Valid(line) {
		return models.MTrade{}, errNotObject
	}
	root := gjson.Parse(line)
	if !root.IsObject() {
		return models.MTrade{}, errNotObject
	}

	sym, err := models.ParseSymbol(root.Get(keySymbol).String())
	if err != nil {
		return models.MTrade{}, fmt.Errorf("%s: %w", keySymbol, err)
	}

	price, err := floatField(root, keyPrice)
	if err != nil {
		return models.MTrade{}, err
	}
	qty, err := floatField(root, keyQuantity)
	if err != nil {
		return models.MTrade{}, err
	}
	if qty < 0 {
		return models.MTrade{}, fmt.Errorf("%s: negative quantity %v", keyQuantity, qty)
	}
	ts, err := uintField(root, keyTimestamp)
	if err != nil {
		return models.MTrade{}, err
	}

	return models.MTrade{Symbol: sym, Price: price, Quantity: qty, Timestamp: ts}, nil
}

// -----------------------------------------------------------------------------

func floatField(root gjson.Result, key string) (float64, error) {
	v := root.Get(key)
	var (
		f   float64
		err error
	)
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		f, err = strconv.ParseFloat(v.Str, 64)
	default:
		return 0, fmt.Errorf("%s: missing or not numeric", key)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: not a finite number", key)
	}
	return f, nil
}

// -----------------------------------------------------------------------------

func uintField(root gjson.Result, key string) (uint64, error) {
	v := root.Get(key)
	var raw string
	switch v.Type {
	case gjson.Number:
		raw = v.Raw
	case gjson.String:
		raw = v.Str
	default:
		return 0, fmt.Errorf("%s: missing or not numeric", key)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
