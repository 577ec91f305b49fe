package conversation

import (
	"strconv"
	"strings"

	"quote_notifier/internal/domain"
)

// Command is a menu action, reachable by button or by text alias.
type Command int

const (
	CmdNone Command = iota
	CmdStart
	CmdSetInterval
	CmdSetPairs
	CmdShowStatus
	CmdToggleActive
)

func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdSetInterval:
		return "set_interval"
	case CmdSetPairs:
		return "set_pairs"
	case CmdShowStatus:
		return "show_status"
	case CmdToggleActive:
		return "toggle_active"
	default:
		return "none"
	}
}

// Callback tokens carried by the inline menu buttons.
const (
	TokenSetInterval  = "config_intervalo"
	TokenSetPairs     = "config_moedas"
	TokenShowStatus   = "ver_status"
	TokenToggleActive = "ativar_desativar"
)

// MenuButton is one inline button of the main menu.
type MenuButton struct {
	Label string
	Token string
}

// MainMenu is the keyboard attached to the last welcome message, one slice per row.
var MainMenu = [][]MenuButton{
	{
		{Label: "⏱ Configurar intervalo", Token: TokenSetInterval},
		{Label: "💱 Configurar Moedas", Token: TokenSetPairs},
	},
	{
		{Label: "📊 Ver configurações atuais", Token: TokenShowStatus},
	},
	{
		{Label: "✅❌ Ativar/Desativar notificações", Token: TokenToggleActive},
	},
}

var callbackCommands = map[string]Command{
	TokenSetInterval:  CmdSetInterval,
	TokenSetPairs:     CmdSetPairs,
	TokenShowStatus:   CmdShowStatus,
	TokenToggleActive: CmdToggleActive,
}

var textCommands = map[string]Command{
	"/start":     CmdStart,
	"/help":      CmdStart,
	"/intervalo": CmdSetInterval,
	"/moedas":    CmdSetPairs,
	"/status":    CmdShowStatus,
	"/ativar":    CmdToggleActive,
}

// CommandForToken maps a callback token to its command. Unknown tokens yield CmdNone.
func CommandForToken(token string) Command {
	return callbackCommands[token]
}

// CommandForText recognizes slash commands, ignoring case and a "@botname" suffix.
func CommandForText(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || strings.ContainsAny(text, " \t\n") {
		return CmdNone
	}
	if at := strings.IndexByte(text, '@'); at > 0 {
		text = text[:at]
	}
	return textCommands[strings.ToLower(text)]
}

// ParseInterval accepts a whole number of minutes within the allowed range.
func ParseInterval(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < domain.MinIntervalMinutes || n > domain.MaxIntervalMinutes {
		return 0, false
	}
	return n, true
}

// ParsePairs reads "FROM-TO, FROM-TO" lists. Malformed entries and duplicates
// are dropped; an empty result means the input was unusable.
func ParsePairs(text string) []domain.CurrencyPair {
	var out []domain.CurrencyPair
	for _, tok := range strings.Split(strings.ToUpper(text), ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.Split(tok, "-")
		if len(parts) != 2 {
			continue
		}
		p := domain.NewCurrencyPair(parts[0], parts[1])
		if p.From == "" || p.To == "" {
			continue
		}
		dup := false
		for _, q := range out {
			if q.Equal(p) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}
