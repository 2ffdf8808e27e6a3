package session

import (
	"fmt"
	"strings"
)

type commandType string

const (
	cmdMode      commandType = "mode"
	cmdSet       commandType = "set"
	cmdRoll      commandType = "roll"
	cmdChoose    commandType = "choose"
	cmdCharacter commandType = "character"
	cmdInventory commandType = "inventory"
	cmdRestart   commandType = "restart"
	cmdHistory   commandType = "history"
	cmdSheet     commandType = "sheet"
	cmdTrophies  commandType = "trophies"
	cmdLook      commandType = "look"
	cmdHelp      commandType = "help"
	cmdNone      commandType = "" // freeform text, no command
)

// command is one parsed slash command with its arguments.
type command struct {
	kind commandType
	args []string
}

// parseCommand splits a turn's text into a command and arguments.
// Anything that does not start with "/" is freeform input.
func parseCommand(input string) command {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdNone}
	}

	fields := strings.Fields(trimmed)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	known := map[string]commandType{
		"mode":         cmdMode,
		"set":          cmdSet,
		"roll":         cmdRoll,
		"r":            cmdRoll,
		"choose":       cmdChoose,
		"choice":       cmdChoose,
		"character":    cmdCharacter,
		"char":         cmdCharacter,
		"inventory":    cmdInventory,
		"i":            cmdInventory,
		"restart":      cmdRestart,
		"history":      cmdHistory,
		"sheet":        cmdSheet,
		"profile":      cmdSheet,
		"trophies":     cmdTrophies,
		"achievements": cmdTrophies,
		"look":         cmdLook,
		"l":            cmdLook,
		"help":         cmdHelp,
	}
	if kind, ok := known[name]; ok {
		return command{kind: kind, args: args}
	}
	return command{kind: cmdNone}
}

func helpText() string {
	return strings.TrimSpace(`
Commands:
  /mode <narrator|achievements|explain|story>
  /set <profanity 0-3 | rating PG|PG-13|R | tangents 0-2 | density low|normal|high>
  /roll <expr>       e.g. 2d6+1, 1d20adv, str+2
  /choose <option>   pick a story option
  /look              show the current scene
  /character <name|pronouns|race|class|backstory> <value>
  /character ability <str|dex|con|int|wis|cha> <score>
  /character done    finalize your character
  /sheet             show your character sheet
  /inventory [add|remove <item> [qty] | clear]
  /history           recent scenes
  /trophies          recent achievements
  /restart           restart the campaign
`)
}

// requireArgs returns a usage error when a command is missing arguments.
func requireArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("%w: usage: %s", ErrInvalidInput, usage)
	}
	return nil
}
