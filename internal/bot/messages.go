package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
	"github.com/ValetFlow/ValetFlow/internal/notify"
	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/ValetFlow/ValetFlow/internal/user"
)

// 主菜单（常驻回复键盘）的按钮文案；handleText 直接按文案匹配。
const (
	menuNewRequest = "🆕 Nuova richiesta"
	menuReturn     = "🔁 Riconsegna auto"
	menuActive     = "📋 Richieste attive"
	menuOpen       = "📋 Richieste disponibili"
	menuMine       = "🧾 Le mie richieste"
)

// mainMenu 角色主菜单。
func mainMenu(role user.Role) *telegram.ReplyKeyboardMarkup {
	var rows [][]telegram.ReplyKeyboardButton
	if role == user.RoleReception {
		rows = [][]telegram.ReplyKeyboardButton{
			{{Text: menuNewRequest}, {Text: menuReturn}},
			{{Text: menuActive}},
		}
	} else {
		rows = [][]telegram.ReplyKeyboardButton{
			{{Text: menuOpen}, {Text: menuMine}},
		}
	}
	return &telegram.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
}

// serviceKeyboard 录入流程的服务类型选择（固定集合）。
func serviceKeyboard() *telegram.ReplyKeyboardMarkup {
	rows := make([][]telegram.ReplyKeyboardButton, 0, len(request.ServiceTypes))
	for _, svc := range request.ServiceTypes {
		rows = append(rows, []telegram.ReplyKeyboardButton{{Text: string(svc)}})
	}
	return &telegram.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
}

// roleKeyboard 注册流程的角色选择。
func roleKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "🛎 Reception", CallbackData: "role:" + string(user.RoleReception)},
			{Text: "🚗 Valet", CallbackData: "role:" + string(user.RoleValet)},
		}},
	}
}

// assigneeKeyboard 受派人对进行中请求的下一步操作按钮。
func assigneeKeyboard(req *request.Request) *telegram.InlineKeyboardMarkup {
	var row []telegram.InlineKeyboardButton
	switch req.Status {
	case request.StatusAssigned:
		row = []telegram.InlineKeyboardButton{
			{Text: "Inizio servizio 🧽", CallbackData: notify.EncodeAction(notify.ActionBegin, req.ID, "")},
			{Text: "Auto partita 🚗", CallbackData: notify.EncodeAction(notify.ActionDeparted, req.ID, "")},
		}
	case request.StatusInProgress:
		row = []telegram.InlineKeyboardButton{
			{Text: "Auto partita 🚗", CallbackData: notify.EncodeAction(notify.ActionDeparted, req.ID, "")},
			{Text: "Servizio completato ✅", CallbackData: notify.EncodeAction(notify.ActionCompleted, req.ID, "")},
		}
	case request.StatusDeparted:
		row = []telegram.InlineKeyboardButton{
			{Text: "Servizio completato ✅", CallbackData: notify.EncodeAction(notify.ActionCompleted, req.ID, "")},
		}
	default:
		return nil
	}
	row = append(row, telegram.InlineKeyboardButton{
		Text: "Annulla ❌", CallbackData: notify.EncodeAction(notify.ActionCancel, req.ID, ""),
	})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{row}}
}

// helpText 角色相关的使用说明。
func helpText(role user.Role) string {
	var b strings.Builder
	b.WriteString("Comandi:\n/start — menu principale\n/register — registrati o cambia ruolo\n/annulla — annulla l'operazione in corso\n/help — questo messaggio\n")
	switch role {
	case user.RoleReception:
		b.WriteString("\nReception: crea richieste, chiedi la riconsegna cercando per targa, conferma l'arrivo dell'auto.")
	case user.RoleValet:
		b.WriteString("\nValet: prendi in carico le richieste nuove, aggiorna lo stato (partita, completata) e riconsegna l'auto.\nFoto: invia una foto con didascalia \"#<numero> prima\" oppure \"#<numero> dopo\".")
	}
	return b.String()
}

// userMessage 把业务错误翻成对用户的提示文案。
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperr.ErrUnauthenticated):
		return "Non sei ancora registrato. Usa /register per iniziare."
	case errors.Is(err, apperr.ErrUnauthorized):
		return "Questa operazione non è permessa al tuo ruolo."
	case errors.Is(err, apperr.ErrInvalidState):
		return "La richiesta non è nello stato giusto per questa operazione."
	case errors.Is(err, apperr.ErrNotFound):
		return "Richiesta non trovata."
	case errors.Is(err, apperr.ErrMalformedInput):
		return fmt.Sprintf("Formato non valido (%v). Esempio: \"#42 prima\".", err)
	}
	return "Si è verificato un errore, riprova."
}
