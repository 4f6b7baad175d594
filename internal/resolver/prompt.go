package resolver

import (
	"fmt"
	"strings"

	"github.com/tendant/ecosort-api/pkg/recycling"
)

// buildPrompt combines the region's instruction document with the classification request
func buildPrompt(regionKey, instructions string) string {
	var sb strings.Builder
	sb.WriteString("Identify the one major object in this image.\n")
	fmt.Fprintf(&sb, "Then use the following disposal and collection instructions for %s:\n", regionKey)
	sb.WriteString("<instructions>\n")
	sb.WriteString(strings.TrimSpace(instructions))
	sb.WriteString("\n</instructions>\n")
	sb.WriteString("Suggest the best way to dispose of the major object as garbage, choosing one of: ")
	sb.WriteString(strings.Join(recycling.DisposalChannels, ", "))
	sb.WriteString(".\n")
	sb.WriteString("If it must be dropped off at a recycling depot or drop-off centre, ")
	sb.WriteString("give the address, contact and hours from the instructions above.")
	return sb.String()
}
