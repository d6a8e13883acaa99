package notify

import (
	"fmt"
	"strings"

	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
)

// RenderCard 渲染请求卡片（对员工可见的统一格式，意大利语界面）。
func RenderCard(req *request.Request) string {
	if req == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Richiesta #%d\n", req.Status.Emoji(), req.ID)
	fmt.Fprintf(&b, "🚘 Targa: %s\n", req.Plate)
	fmt.Fprintf(&b, "🧑 Ospite: %s — camera %s\n", req.Guest, req.Room)
	fmt.Fprintf(&b, "🧰 Servizio: %s", req.Service)
	if req.PickupETA != "" {
		fmt.Fprintf(&b, "\n⏱ Ritiro: %s", req.PickupETA)
	}
	if req.ReturnETA != "" {
		fmt.Fprintf(&b, "\n⏱ Riconsegna: %s", req.ReturnETA)
	}
	return b.String()
}

// ClaimKeyboard 新请求广播给泊车员的认领按钮（取车 ETA 固定选项）。
func ClaimKeyboard(requestID uint64) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "Prendo io — 5 min", CallbackData: EncodeAction(ActionClaim, requestID, "5")},
			{Text: "10 min", CallbackData: EncodeAction(ActionClaim, requestID, "10")},
			{Text: "20 min", CallbackData: EncodeAction(ActionClaim, requestID, "20")},
		}},
	}
}

// returnETAKeyboard 发给受派人的还车 ETA 选项。
func returnETAKeyboard(requestID uint64) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "Rientro in 10 min", CallbackData: EncodeAction(ActionReturnETA, requestID, "10")},
			{Text: "20 min", CallbackData: EncodeAction(ActionReturnETA, requestID, "20")},
		}},
	}
}

// confirmReturnKeyboard 发给前台的到车确认按钮。
func confirmReturnKeyboard(requestID uint64) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "Auto riconsegnata ✔", CallbackData: EncodeAction(ActionConfirmReturn, requestID, "")},
		}},
	}
}
