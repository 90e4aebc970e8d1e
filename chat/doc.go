// Package chat connects to Twitch IRC and turns viewer messages into
// highlight events.
//
// It provides two pieces:
//   - Client: the IRC transport. It validates the OAuth token against the
//     Twitch id service to derive the bot login, joins the configured
//     channels, and forwards recognized commands and moderation events to
//     the engine router. Connection lifecycle progress is reported as
//     events too, never as return values.
//   - ParseMessage: the command grammar. Viewers write
//     "!line [file] <n>[-<m>] [comment]" to claim a highlight,
//     "!unline [file] <n>" to release one, and moderators can "!clear"
//     everything. "!highlight"/"!unhighlight" are accepted aliases.
//
// Credentials: the IRC client needs an OAuth token with chat:read scope.
// The token is requested through the engine's prompter at connect time and
// kept encrypted at rest; nothing in this package stores it.
package chat
