package telegram

import (
	"encoding/json"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebAppData is the payload a Mini App sends back with Telegram.WebApp.sendData
type WebAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text"`
}

// Update extends the library update with fields the library does not decode
type Update struct {
	tgbotapi.Update

	// WebAppData is set for messages carrying message.web_app_data
	WebAppData *WebAppData
}

func (u *Update) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &u.Update); err != nil {
		return err
	}

	var extra struct {
		Message *struct {
			WebAppData *WebAppData `json:"web_app_data"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	if extra.Message != nil {
		u.WebAppData = extra.Message.WebAppData
	}
	return nil
}
