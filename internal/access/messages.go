package access

// Line keywords sent by the gate terminal.
const (
	KeyPlayerID  = "ID_JOUEUR"
	KeyPassword  = "MOT_DE_PASSE"
	KeyBirthDate = "DATE_NAISSANCE"
	KeyTeam      = "NOM_EQUIPE"
	KeyTicket    = "QR_CODE"
)

// Server prompts. The password prompt is prose because older terminals
// look for "mot de passe" in it.
const (
	PromptPassword  = "Joueur trouve, veuillez entrer le mot de passe"
	PromptBirthDate = "DATE_NAISSANCE:YYYY-MM-DD"
	PromptTeam      = "NOM_EQUIPE:?"
	PromptTicket    = "QR_CODE:?"
)

// Terminal responses.
const (
	MsgGranted       = "ACCES AUTORISE"
	msgRefusedPrefix = "ACCES REFUSE, MOTIF: "
)

// Refusal reasons.
const (
	ReasonBadIDFormat        = "format id invalide"
	ReasonIDNotInteger       = "id doit etre un entier"
	ReasonUnknownPlayer      = "joueur inconnu"
	ReasonInactivePlayer     = "joueur inactif"
	ReasonWrongBirthDate     = "date de naissance incorrecte"
	ReasonWrongPassword      = "mot de passe errone"
	ReasonAccountLocked      = "compte bloque"
	ReasonNoTeamReservation  = "aucune reservation active pour cette equipe"
	ReasonNoMatchReservation = "aucune reservation active pour ce match"
	ReasonBadTicketLine      = "qr manquant ou format invalide"
	ReasonDisconnected       = "connexion interrompue"
	ReasonInternal           = "erreur interne"
	reasonIdle               = "idle timeout"
)

// Refusal formats the terminal refusal line for reason.
func Refusal(reason string) string {
	return msgRefusedPrefix + reason
}
