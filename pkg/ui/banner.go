package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/apivet/apivet/pkg/defaults"
)

const bannerArt = `
              _           __
  ____ _____  (_)  _____  / /_
 / __ ` + "`" + `/ __ \/ / | / / _ \/ __/
/ /_/ / /_/ / /| |/ /  __/ /_
\__,_/ .___/_/ |___/\___/\__/
    /_/
`

// Banner renders the startup banner with version badge.
func Banner(w io.Writer) {
	fmt.Fprintln(w, BannerStyle.Render(strings.TrimLeft(bannerArt, "\n")))
	fmt.Fprintf(w, "    %s\n\n", ValueStyle.Render("v"+defaults.Version))
}
