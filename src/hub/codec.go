package hub

import (
	"encoding/json"
	"errors"

	"ohlc-streamer/src/models"

	"github.com/tidwall/gjson"
)

var errNotObject = errors.New("message is not a flat JSON object")

// EncodeNotify renders the outbound push of a bar update.
func EncodeNotify(u models.MBarUpdate) (string, error) {
	b, err := json.Marshal(models.MBarNotify{
		Event:  models.EventOHLCNotify,
		Symbol: string(u.Symbol),
		BarNum: u.Bar.Sequence,
		Open:   u.Bar.Open,
		High:   u.Bar.High,
		Low:    u.Bar.Low,
		Close:  u.Bar.Close,
		Volume: u.Bar.Volume,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeSubscriptions renders the reply listing a client's subscriptions.
func EncodeSubscriptions(symbols []string) (string, error) {
	if symbols == nil {
		symbols = []string{}
	}
	b, err := json.Marshal(models.MSubscriptionList{Event: models.EventSubscriptions, Symbols: symbols})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeRequest reads an inbound client request. Values may be strings or
// numbers; unknown keys are ignored.
func DecodeRequest(text string) (models.MSubscribeRequest, error) {
	if !gjson.Valid(text) {
		return models.MSubscribeRequest{}, errNotObject
	}
	msg := gjson.Parse(text)
	if !msg.IsObject() {
		return models.MSubscribeRequest{}, errNotObject
	}

	return models.MSubscribeRequest{
		Event:    msg.Get("event").String(),
		Symbol:   msg.Get("symbol").String(),
		Interval: msg.Get("interval").String(),
	}, nil
}
