package middleware

import (
	"net/http"
	"strconv"

	"github.com/breatheroute/airdash/internal/notice"
)

// HeaderConfirm carries the caller's answer to a destructive-action prompt.
const HeaderConfirm = "X-Confirm"

// Confirmer answers confirmation prompts from the request's X-Confirm header.
// Anything that does not parse as true declines.
func Confirmer(r *http.Request) notice.Confirmer {
	ok, _ := strconv.ParseBool(r.Header.Get(HeaderConfirm))
	return notice.Static(ok)
}
