// Package texts holds every user-facing reply the bot sends. The defaults are
// English; a YAML file can override any of them so deployments can localize
// without rebuilding.
package texts

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the set of canned replies and labels used by the router and the
// Telegram channel.
type Catalog struct {
	Greeting             string `yaml:"greeting"`
	OperatorConnected    string `yaml:"operatorConnected"`
	OperatorDisconnected string `yaml:"operatorDisconnected"`
	ForwardHeader        string `yaml:"forwardHeader"`        // fmt.Sprintf with the conversation id
	TakeoverNotice       string `yaml:"takeoverNotice"`       // fmt.Sprintf with the conversation id
	OperatorReplyPrefix  string `yaml:"operatorReplyPrefix"`
	RelayUsage           string `yaml:"relayUsage"`
	ToggleButton         string `yaml:"toggleButton"`
}

// Defaults returns the built-in English catalog.
func Defaults() Catalog {
	return Catalog{
		Greeting: "Hi! I'm an AI assistant, ask me anything.\n" +
			"Press the button below to talk to a human operator.\n" +
			"Press it again to end the operator dialogue.",
		OperatorConnected:    "Operator connected to the dialogue",
		OperatorDisconnected: "Operator disconnected from the dialogue",
		ForwardHeader:        "Message from user %s",
		TakeoverNotice:       "User %s requested an operator.\nReply in the format 'id: message'",
		OperatorReplyPrefix:  "Operator reply: ",
		RelayUsage:           "Invalid message format. Use 'chat_id: message'.",
		ToggleButton:         "Connect/disconnect operator",
	}
}

// Load reads overrides from a YAML file on top of the defaults. A missing
// path is not an error; deployments that want the defaults ship no file.
func Load(path string, logger *slog.Logger) (Catalog, error) {
	cat := Defaults()
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("texts file does not exist, using defaults", "path", path)
			return cat, nil
		}
		return cat, fmt.Errorf("read texts file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Defaults(), fmt.Errorf("parse texts file %s: %w", path, err)
	}
	logger.Info("loaded texts overrides", "path", path)
	return cat, nil
}

// Forward renders the header that prefixes a user message forwarded to the
// operator chat.
func (c Catalog) Forward(convID, text string) string {
	return fmt.Sprintf(c.ForwardHeader, convID) + "\n" + text
}

// Takeover renders the notice sent to the operator when a user toggles the
// operator on.
func (c Catalog) Takeover(convID string) string {
	return fmt.Sprintf(c.TakeoverNotice, convID)
}
