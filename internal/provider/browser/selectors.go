package browser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// XPath locators for the WhatsApp Web page.
const (
	xpathChatList      = `//div[@id="pane-side"]`
	xpathComposeBox    = `//div[@role="textbox" and @contenteditable="true" and @aria-label="Type a message"]`
	xpathNotRegistered = `//div[contains(text(), "` + notRegisteredLabel + `")]`
	xpathAttachButton  = `//button[@title="Attach" and @type="button"]`
	xpathFileInput     = `//input[@accept="*"]`
	xpathSendButton    = `//div[@role="button" and @aria-label="Send"]`
	xpathCloseButton   = `//div[@role="button" and @aria-label="Close"]`
	xpathCaptionBox    = `//div[@role="textbox" and @contenteditable="true" and @aria-label="Add a caption"]`
	xpathDeliveredTick = `//span[@aria-label=" Delivered " and @data-icon="msg-dblcheck"]`
)

// chatURL returns the deep link that opens a chat with contact.
func chatURL(baseURL string, contact string) string {
	query := url.Values{}
	query.Set("phone", contact)
	return strings.TrimRight(baseURL, "/") + "/send?" + query.Encode()
}

// probeScript builds a JS expression evaluating to the 1-based index of the
// first xpath that matches a node, or 0 when none does.
func probeScript(xpaths ...string) string {
	encoded, err := json.Marshal(xpaths)
	if err != nil {
		return "0"
	}
	return fmt.Sprintf(`(() => {
  const paths = %s;
  for (let i = 0; i < paths.length; i++) {
    const hit = document.evaluate(paths[i], document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
    if (hit.singleNodeValue) return i + 1;
  }
  return 0;
})()`, encoded)
}
