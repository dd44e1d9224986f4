package irc

// IRC replies.
const (
	rplWelcome = "001" // :Welcome message
	rplMyinfo  = "004" // <servername> <version> <umodes> <chan modes> <chan modes with a parameter>

	errInvalidcapcmd    = "410" // <command> :Unknown cap command
	errErroneusnickname = "432" // <nick> :Erroneous nickname
	errNicknameinuse    = "433" // <nick> :Nickname in use
	errNotregistered    = "451" // :You have not registered
	errPasswdmismatch   = "464" // :Password incorrect
	errYourebannedcreep = "465" // :You're banned from this server
)
