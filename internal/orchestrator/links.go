package orchestrator

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/ledger"
	"github.com/chosahoo/cafe24-cs-bot/internal/notifications"
)

// linkPage is shown for chat notification links. Opening a link only
// renders it; the form submission performs the action.
const linkPage = `<!DOCTYPE html>
<html lang="ko">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <meta name="robots" content="noindex">
  <title>{{.Heading}}</title>
</head>
<body>
  <h1>{{.Heading}}</h1>
  {{with .Log}}
  <p>게시글 {{.PostID}} (게시판 {{.BoardID}}) · 상태 {{.Status}}</p>
  <h2>문의</h2>
  <pre>{{.Question}}</pre>
  <h2>답변</h2>
  {{end}}
  {{if .Answer}}<pre>{{.Answer}}</pre>{{end}}
  {{if .Message}}<p>{{.Message}}</p>{{end}}
  {{if .Confirm}}
  <form method="post">
    <input type="hidden" name="token" value="{{.Token}}">
    <button type="submit">{{.Button}}</button>
  </form>
  {{end}}
</body>
</html>
`

var linkTmpl = template.Must(template.New("link").Parse(linkPage))

type linkView struct {
	Heading string
	Button  string
	Log     *ledger.AnswerLog
	Answer  string
	Message string
	Confirm bool
	Token   string
}

func actionLabels(action string) (heading, button string) {
	if action == notifications.ActionReject {
		return "답변 거부", "거부하기"
	}
	return "답변 승인", "승인하고 게시하기"
}

// registerLinkRoutes mounts the targets of signed notification links.
func registerLinkRoutes(r chi.Router, svc *Service, links *notifications.LinkSigner) {
	r.Get("/answers/{logID}/{action:approve|reject}", handleLinkConfirm(svc, links))
	r.Post("/answers/{logID}/{action:approve|reject}", handleLinkSubmit(svc, links))
}

func handleLinkConfirm(svc *Service, links *notifications.LinkSigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := logID(w, r)
		if !ok {
			return
		}
		action := chi.URLParam(r, "action")
		token := r.URL.Query().Get("token")
		if !links.Verify(id, action, token) {
			http.Error(w, "invalid or expired link", http.StatusForbidden)
			return
		}
		l, err := svc.AnswerLog(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		heading, button := actionLabels(action)
		view := linkView{Heading: heading, Button: button, Log: l, Answer: answerOf(l), Token: token, Confirm: !l.Status.Terminal()}
		if l.Status.Terminal() {
			view.Message = "이미 처리된 답변입니다."
		}
		renderLinkPage(w, http.StatusOK, view)
	}
}

func handleLinkSubmit(svc *Service, links *notifications.LinkSigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := logID(w, r)
		if !ok {
			return
		}
		action := chi.URLParam(r, "action")
		if !links.Verify(id, action, r.PostFormValue("token")) {
			http.Error(w, "invalid or expired link", http.StatusForbidden)
			return
		}

		var (
			l   *ledger.AnswerLog
			err error
		)
		if action == notifications.ActionReject {
			l, err = svc.Reject(r.Context(), id)
		} else {
			l, err = svc.Approve(r.Context(), ApproveRequest{LogID: id})
		}
		heading, _ := actionLabels(action)
		if err != nil {
			renderLinkPage(w, apperr.HTTPStatus(err), linkView{Heading: heading, Message: err.Error()})
			return
		}
		renderLinkPage(w, http.StatusOK, linkView{Heading: heading, Log: l, Answer: answerOf(l), Message: "처리되었습니다."})
	}
}

func renderLinkPage(w http.ResponseWriter, status int, view linkView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	linkTmpl.Execute(w, view)
}
