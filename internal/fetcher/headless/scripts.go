package headless

import (
	"encoding/json"
	"fmt"
)

const (
	buttonAbsent   = "absent"
	buttonDisabled = "disabled"
	buttonEnabled  = "enabled"
)

type xpathResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshalling a string cannot fail.
		panic(err)
	}
	return string(b)
}

func xpathTextScript(xpath string) string {
	return fmt.Sprintf(`(() => {
	const node = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	return node === null ? {found: false, text: ""} : {found: true, text: node.textContent || ""};
})()`, jsString(xpath))
}

func linksScript(selector string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(a => a.getAttribute("href"))`, jsString(selector))
}

func linkCountScript(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
}

func buttonStateScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const b = document.querySelector(%s);
	if (b === null) return %q;
	if (b.disabled || b.getAttribute("aria-disabled") === "true") return %q;
	return %q;
})()`, jsString(selector), buttonAbsent, buttonDisabled, buttonEnabled)
}
