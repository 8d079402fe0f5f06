package litigation

import (
	"strings"
	"text/template"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/entity"
)

// DeadlineBusinessDays is the compliance delay granted by a notice.
const DeadlineBusinessDays = 8

// Notice is a rendered formal notice.
type Notice struct {
	To      string
	Subject string
	Body    string
}

type noticeData struct {
	Subject  string
	Law      string
	Amount   string
	Claimant string
	Deadline int
}

var noticeTemplate = template.Must(template.New("notice").Parse(`Madame, Monsieur,

Je vous mets en demeure de procéder au règlement du litige suivant : {{.Subject}}.

Sur le fondement de {{.Law}}, je vous demande le versement de la somme de {{.Amount}}.

À défaut d'exécution dans un délai de {{.Deadline}} jours ouvrés à compter de la réception du présent courrier, je me réserve le droit de saisir la juridiction compétente sans autre avis.

Je vous prie d'agréer, Madame, Monsieur, l'expression de mes salutations distinguées.

{{.Claimant}}
`))

// RenderNotice renders the notice for c. Output depends only on its inputs.
func RenderNotice(c entity.Case, to, law, claimant string) (Notice, error) {
	var b strings.Builder
	err := noticeTemplate.Execute(&b, noticeData{
		Subject:  c.Subject,
		Law:      law,
		Amount:   c.Amount,
		Claimant: claimant,
		Deadline: DeadlineBusinessDays,
	})
	if err != nil {
		return Notice{}, err
	}
	return Notice{To: to, Subject: "Mise en demeure - " + c.Subject, Body: b.String()}, nil
}
