package conversation

import (
	"fmt"
	"strings"

	"quote_notifier/internal/domain"
)

const (
	msgWelcome      = "Bem-vindo ao Bot de Câmbio!"
	msgAbout        = "Nele você poderá receber atualizações diárias de cotações de moedas com frequência configurável."
	msgInstructions = "Siga as instruções e configure o intervalo de tempo das mensagens e as moedas desejadas."

	msgAskInterval     = "Digite o intervalo de tempo em minutos:"
	msgAskPairs        = `Digite as moedas desejadas no formato "BRL-USD, USD-EUR":`
	msgInvalidInterval = "Por favor, digite um número válido em minutos, maior que 0 e menor que 1440."
	msgInvalidPairs    = "Formato inválido. Use por exemplo: EUR-BRL,EUR-USD"
	msgHint            = "Não entendi. Envie /start para ver o menu."
	msgTryAgain        = "Não foi possível salvar suas configurações. Tente novamente."
)

func intervalConfirmation(minutes int) string {
	unit := "minuto"
	if minutes > 1 {
		unit = "minutos"
	}
	return fmt.Sprintf("Intervalo configurado para %d %s.", minutes, unit)
}

func pairsConfirmation(pairs []domain.CurrencyPair) string {
	var b strings.Builder
	b.WriteString("Moedas configuradas:")
	for _, p := range pairs {
		b.WriteString("\n")
		b.WriteString(p.From + " → " + p.To)
	}
	return b.String()
}

func toggleConfirmation(active bool) string {
	if active {
		return "Notificações ativadas!"
	}
	return "Notificações desativadas!"
}

// StatusText renders the current configuration of a subscriber.
func StatusText(sub *domain.Subscriber) string {
	mark := "❌"
	if sub.IsActive {
		mark = "✅"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗣 Notificações: %s\n", mark)
	fmt.Fprintf(&b, "⏱ Intervalo: %d min\n", sub.MinutesInterval)
	b.WriteString("💱 Moedas:")
	if len(sub.Pairs) == 0 {
		b.WriteString(" nenhuma")
	}
	for _, p := range sub.Pairs {
		b.WriteString("\n    " + p.From + "→" + p.To)
	}
	return b.String()
}
