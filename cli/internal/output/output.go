package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/authgate/cli/internal/api"
)

// Out is where the human-readable printers write.
var Out io.Writer = os.Stdout

// JSON prints v as indented JSON.
func JSON(v interface{}) {
	enc := json.NewEncoder(Out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// UserInfo prints user details.
func UserInfo(u api.User) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	fmt.Fprintf(w, "Username:\t%s\n", u.Username)
	fmt.Fprintf(w, "Name:\t%s %s\n", u.FirstName, u.LastName)
	fmt.Fprintf(w, "2FA:\t%s\n", enabled(u.Is2FAEnabled))
	fmt.Fprintf(w, "ID:\t%s\n", u.ID)
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Joined:\t%s\n", RelativeTime(u.CreatedAt))
	}
	w.Flush()
}

// TwoFactorSetup prints the secret for manual entry and the backup codes.
// The QR data URI is only included in JSON output.
func TwoFactorSetup(s api.TwoFactorSetup) {
	fmt.Fprintf(Out, "Secret: %s\n\n", s.Secret)
	fmt.Fprintln(Out, "Backup codes (each works once, store them somewhere safe):")
	w := tabwriter.NewWriter(Out, 0, 0, 4, ' ', 0)
	for i, code := range s.BackupCodes {
		sep := "\t"
		if i%2 == 1 || i == len(s.BackupCodes)-1 {
			sep = "\n"
		}
		fmt.Fprintf(w, "  %s%s", code, sep)
	}
	w.Flush()
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// RelativeTime formats a timestamp relative to now (e.g. "2h ago", "3d ago").
func RelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
