package dialogue

import (
	"fmt"
	"strings"
)

// Locale selects the reply catalog.
type Locale string

const (
	LocalePT Locale = "pt"
	LocaleEN Locale = "en"
	LocaleFR Locale = "fr"
	LocaleES Locale = "es"
)

// ParseLocale maps a language tag ("pt-BR", "en", "FR") to a supported locale.
// Unknown tags fall back to Portuguese.
func ParseLocale(tag string) Locale {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	switch Locale(tag) {
	case LocaleEN, LocaleFR, LocaleES:
		return Locale(tag)
	default:
		return LocalePT
	}
}

type replyKey int

const (
	replyConfirmed replyKey = iota
	replyCancelled
	replyRescheduled
	replyRescheduleStarted
	replyProposalCleared
	replyNeedDateAndTime
	replySlotProposed
	replySlotUnavailable
	replySlotUnavailableNone
	replyDateProposed
	replyDateAlternatives
	replyNoAvailability
	replyWhichDay
	replyDialogueClosed
	replySlotRaceLost
	replyStoreUnavailable
	replyResponderUnavailable
	replyNeedExplicitAnswer
	replyReminder
	replyWaitlistInvite
)

var catalog = map[Locale]map[replyKey]string{
	LocalePT: {
		replyConfirmed:            "Obrigado! Seu agendamento em %s às %s está confirmado.",
		replyCancelled:            "Seu agendamento foi cancelado. Se quiser marcar novamente, é só nos avisar.",
		replyRescheduled:          "Pronto! Seu agendamento foi reagendado para %s às %s.",
		replyRescheduleStarted:    "Claro! Qual data e horário você prefere para o novo agendamento?",
		replyProposalCleared:      "Tudo bem. Qual outra data e horário você prefere?",
		replyNeedDateAndTime:      "Para reagendar preciso da data e do horário desejados. Por exemplo: amanhã às 14:00.",
		replySlotProposed:         "O horário %s às %s está disponível. Deseja confirmar? Responda sim ou não.",
		replySlotUnavailable:      "O horário %s às %s não está disponível. Horários livres em %s: %s. Qual prefere?",
		replySlotUnavailableNone:  "O horário %s às %s não está disponível e não há horários livres nos próximos dias. Tente outra data.",
		replyDateProposed:         "Horários disponíveis em %s: %s. Qual horário prefere?",
		replyDateAlternatives:     "Não há horários em %s. O próximo dia com horários é %s: %s. Qual prefere?",
		replyNoAvailability:       "Não há horários disponíveis em %s nem nos dias seguintes. Tente outra data.",
		replyWhichDay:             "Para qual dia você quer o horário das %s?",
		replyDialogueClosed:       "Este atendimento ainda não está disponível por mensagem. Você receberá um aviso quando puder confirmar ou reagendar.",
		replySlotRaceLost:         "Desculpe, o horário %s às %s não está mais disponível. Escolha outra data e horário.",
		replyStoreUnavailable:     "Estamos com uma instabilidade no momento. Tente novamente em alguns minutos.",
		replyResponderUnavailable: "Desculpe, não consegui entender. Responda sim para confirmar, não para cancelar ou R para reagendar.",
		replyNeedExplicitAnswer:   "Para alterar o agendamento preciso de uma resposta explícita. Responda sim ou não, ou envie a data e o horário desejados.",
		replyReminder:             "Lembrete: você tem um agendamento em %s às %s. Responda Y para confirmar, N para cancelar ou R para reagendar.",
		replyWaitlistInvite:       "Surgiu uma vaga para antecipar seu agendamento de %s às %s. Deseja antecipar? Responda Yes para aceitar ou No para manter seu horário atual.",
	},
	LocaleEN: {
		replyConfirmed:            "Thank you! Your appointment on %s at %s is confirmed.",
		replyCancelled:            "Your appointment has been cancelled. Let us know if you would like to book again.",
		replyRescheduled:          "Done! Your appointment has been moved to %s at %s.",
		replyRescheduleStarted:    "Sure! Which date and time would you prefer for the new appointment?",
		replyProposalCleared:      "No problem. Which other date and time would you prefer?",
		replyNeedDateAndTime:      "To reschedule I need both the date and the time. For example: tomorrow at 14:00.",
		replySlotProposed:         "%s at %s is available. Would you like to confirm? Reply yes or no.",
		replySlotUnavailable:      "%s at %s is not available. Open times on %s: %s. Which one do you prefer?",
		replySlotUnavailableNone:  "%s at %s is not available and there are no open times in the next days. Please try another date.",
		replyDateProposed:         "Open times on %s: %s. Which time do you prefer?",
		replyDateAlternatives:     "There are no open times on %s. The next day with open times is %s: %s. Which one do you prefer?",
		replyNoAvailability:       "There are no open times on %s or the following days. Please try another date.",
		replyWhichDay:             "Which day would you like %s on?",
		replyDialogueClosed:       "This appointment is not available by message yet. You will be notified when you can confirm or reschedule.",
		replySlotRaceLost:         "Sorry, %s at %s is no longer available. Please choose another date and time.",
		replyStoreUnavailable:     "We are having a temporary issue. Please try again in a few minutes.",
		replyResponderUnavailable: "Sorry, I could not understand. Reply Y to confirm, N to cancel or R to reschedule.",
		replyNeedExplicitAnswer:   "I need an explicit answer to change your appointment. Reply yes or no, or send the date and time you want.",
		replyReminder:             "Reminder: you have an appointment on %s at %s. Reply Y to confirm, N to cancel or R to reschedule.",
		replyWaitlistInvite:       "An earlier opening is available for your appointment on %s at %s. Would you like to move it up? Reply Yes to accept or No to keep your current time.",
	},
	LocaleFR: {
		replyConfirmed:            "Merci ! Votre rendez-vous du %s à %s est confirmé.",
		replyCancelled:            "Votre rendez-vous a été annulé. Contactez-nous si vous souhaitez en reprendre un.",
		replyRescheduled:          "C'est fait ! Votre rendez-vous a été déplacé au %s à %s.",
		replyRescheduleStarted:    "Bien sûr ! Quelle date et quelle heure préférez-vous pour le nouveau rendez-vous ?",
		replyProposalCleared:      "D'accord. Quelle autre date et heure préférez-vous ?",
		replyNeedDateAndTime:      "Pour reprogrammer, j'ai besoin de la date et de l'heure. Par exemple : demain à 14:00.",
		replySlotProposed:         "Le créneau du %s à %s est disponible. Souhaitez-vous confirmer ? Répondez oui ou non.",
		replySlotUnavailable:      "Le créneau du %s à %s n'est pas disponible. Créneaux libres le %s : %s. Lequel préférez-vous ?",
		replySlotUnavailableNone:  "Le créneau du %s à %s n'est pas disponible et aucun créneau n'est libre les prochains jours. Essayez une autre date.",
		replyDateProposed:         "Créneaux disponibles le %s : %s. Quelle heure préférez-vous ?",
		replyDateAlternatives:     "Aucun créneau le %s. Le prochain jour disponible est le %s : %s. Lequel préférez-vous ?",
		replyNoAvailability:       "Aucun créneau disponible le %s ni les jours suivants. Essayez une autre date.",
		replyWhichDay:             "Pour quel jour souhaitez-vous %s ?",
		replyDialogueClosed:       "Ce rendez-vous n'est pas encore disponible par message. Vous serez prévenu lorsque vous pourrez confirmer ou reprogrammer.",
		replySlotRaceLost:         "Désolé, le créneau du %s à %s n'est plus disponible. Choisissez une autre date et heure.",
		replyStoreUnavailable:     "Nous rencontrons un problème temporaire. Réessayez dans quelques minutes.",
		replyResponderUnavailable: "Désolé, je n'ai pas compris. Répondez par Y pour confirmer, N pour annuler ou R pour reprogrammer.",
		replyNeedExplicitAnswer:   "J'ai besoin d'une réponse explicite pour modifier votre rendez-vous. Répondez oui ou non, ou envoyez la date et l'heure souhaitées.",
		replyReminder:             "Rappel : vous avez un rendez-vous le %s à %s. Répondez par Y pour confirmer, N pour annuler ou R pour reprogrammer.",
		replyWaitlistInvite:       "Un créneau plus tôt s'est libéré pour votre rendez-vous du %s à %s. Souhaitez-vous l'avancer ? Répondez Yes pour accepter ou No pour garder votre horaire.",
	},
	LocaleES: {
		replyConfirmed:            "¡Gracias! Su cita del %s a las %s está confirmada.",
		replyCancelled:            "Su cita ha sido cancelada. Avísenos si desea reservar de nuevo.",
		replyRescheduled:          "¡Listo! Su cita fue cambiada al %s a las %s.",
		replyRescheduleStarted:    "¡Claro! ¿Qué fecha y hora prefiere para la nueva cita?",
		replyProposalCleared:      "De acuerdo. ¿Qué otra fecha y hora prefiere?",
		replyNeedDateAndTime:      "Para reprogramar necesito la fecha y la hora. Por ejemplo: mañana a las 14:00.",
		replySlotProposed:         "El horario del %s a las %s está disponible. ¿Desea confirmar? Responda sí o no.",
		replySlotUnavailable:      "El horario del %s a las %s no está disponible. Horarios libres el %s: %s. ¿Cuál prefiere?",
		replySlotUnavailableNone:  "El horario del %s a las %s no está disponible y no hay horarios libres en los próximos días. Pruebe otra fecha.",
		replyDateProposed:         "Horarios disponibles el %s: %s. ¿Qué hora prefiere?",
		replyDateAlternatives:     "No hay horarios el %s. El próximo día con horarios es el %s: %s. ¿Cuál prefiere?",
		replyNoAvailability:       "No hay horarios disponibles el %s ni los días siguientes. Pruebe otra fecha.",
		replyWhichDay:             "¿Para qué día quiere el horario de las %s?",
		replyDialogueClosed:       "Esta cita todavía no está disponible por mensaje. Recibirá un aviso cuando pueda confirmar o reprogramar.",
		replySlotRaceLost:         "Lo sentimos, el horario del %s a las %s ya no está disponible. Elija otra fecha y hora.",
		replyStoreUnavailable:     "Tenemos un problema temporal. Inténtelo de nuevo en unos minutos.",
		replyResponderUnavailable: "Lo siento, no entendí. Responda Y para confirmar, N para cancelar o R para reprogramar.",
		replyNeedExplicitAnswer:   "Necesito una respuesta explícita para cambiar su cita. Responda sí o no, o envíe la fecha y hora que desea.",
		replyReminder:             "Recordatorio: tiene una cita el %s a las %s. Responda Y para confirmar, N para cancelar o R para reprogramar.",
		replyWaitlistInvite:       "Se liberó un horario para adelantar su cita del %s a las %s. ¿Desea adelantarla? Responda Yes para aceptar o No para mantener su horario actual.",
	},
}

func render(locale Locale, key replyKey, args ...any) string {
	tmpl, ok := catalog[locale][key]
	if !ok {
		tmpl = catalog[LocalePT][key]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// ReminderMessage is the text the reminder dispatcher writes into the conversation
// before unlocking the dialogue.
func ReminderMessage(locale Locale, date Date, at TimeOfDay) string {
	return render(locale, replyReminder, date.Display(), at.String())
}

// WaitlistInviteMessage offers a waitlisted client an earlier opening for the
// appointment they already hold.
func WaitlistInviteMessage(locale Locale, date Date, at TimeOfDay) string {
	return render(locale, replyWaitlistInvite, date.Display(), at.String())
}

// formatSlots renders stored slot strings in canonical "HH:MM" form.
func formatSlots(slots []string) string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if t, err := ParseTimeOfDay(s); err == nil {
			out = append(out, t.String())
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, ", ")
}
