package rules

import (
	"github.com/pelissiernicolas/mail-ai-local/internal/decision"
)

// DefaultOverrideRules is the built-in ordered override list, used when the
// configuration does not supply one. Order matters: first match wins.
func DefaultOverrideRules() []OverrideRule {
	return []OverrideRule{
		{Sender: `@quora\.com`, Subject: `.*`, Decision: decision.Delete, Reason: "rule: quora digest"},
		{Sender: `@accounts\.google\.com`, Subject: `(alerte de s[ée]curit[ée]|security alert)`, Decision: decision.Delete, Reason: "rule: google security alert"},
		{Sender: `^service@paypal\.fr$`, Subject: `(connexion depuis un nouvel appareil|new device|nouvel appareil)`, Decision: decision.Delete, Reason: "rule: paypal new device"},
		{Sender: `@myfox\.me|@myfox\.`, Subject: `.*`, Decision: decision.Delete, Reason: "rule: myfox spam"},
		{Sender: `@linkedin\.com`, Subject: `.*`, Decision: decision.Delete, Reason: "rule: linkedin spam"},
		{Sender: `^account@twitch\.tv$`, Subject: `.*`, Decision: decision.Delete, Reason: "rule: twitch account"},
		{Sender: `^transaction@notice\.aliexpress\.com$`, Subject: `.*`, Decision: decision.Delete, Reason: "rule: aliexpress transaction"},
		{Sender: `(newsletter|news\.|mailer|mailers?p\d+|email\.)`, Subject: `.*`, Decision: decision.Delete, Reason: "rule: generic newsletter sender"},
		{Sender: `.*`, Subject: `(newsletter|promo|promotion|ventes? priv[ée]es?|bon\s?plan|r[ée]duction|remise|offre|deal|soldes?|flash sale|discount|% off)`, Decision: decision.Delete, Reason: "rule: promo subject"},
	}
}

// DefaultSenderHeuristics maps sender address and domain patterns to labels.
func DefaultSenderHeuristics() []HeuristicRule {
	return []HeuristicRule{
		{Pattern: `(newsletter|news\.|mailer|email\.)`, Labels: []string{"Newsletter"}},
		{Pattern: `(linkedin|facebook|twitter|instagram|quora)\.com`, Labels: []string{"Réseaux sociaux"}},
		{Pattern: `(paypal|bank|banque|boursorama)`, Labels: []string{"Bancaire"}},
		{Pattern: `@accounts\.google\.com`, Labels: []string{"Sécurité", "Notifications"}},
		{Pattern: `(amazon|aliexpress|cdiscount)`, Labels: []string{"Commandes"}},
		{Pattern: `no-?reply@`, Labels: []string{"Notifications"}},
	}
}

// DefaultSubjectHeuristics maps subject keyword patterns to labels.
func DefaultSubjectHeuristics() []HeuristicRule {
	return []HeuristicRule{
		{Pattern: `(promo|promotion|soldes?|flash sale|% off|discount|deal|r[ée]duction|offre)`, Labels: []string{"Promotions"}},
		{Pattern: `(security|s[ée]curit[ée]|sign.?in|2fa|password|mot de passe|nouvel appareil|new device|unusual)`, Labels: []string{"Sécurité"}},
		{Pattern: `(invoice|facture|receipt|re[çc]u|payment|paiement)`, Labels: []string{"Factures"}},
		{Pattern: `(newsletter|digest|hebdo|weekly)`, Labels: []string{"Newsletter"}},
		{Pattern: `(livraison|delivery|shipped|exp[ée]di[ée]|tracking|colis)`, Labels: []string{"Livraison"}},
		{Pattern: `(rendez-?vous|appointment|meeting)`, Labels: []string{"Rendez-vous"}},
	}
}
