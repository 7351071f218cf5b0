package i18n

// TranslationSet is a set of localised strings for a given language
type TranslationSet struct {
	NoHostNameError     string
	NotADirectoryError  string
	PathNotFoundError   string
	NotALinkError       string
	CantSendDirToFile   string
	CantRecvDirToFile   string
	WrongSendArgsError  string
	WrongRecvArgsError  string
	WrongChdirArgsError string
	RunLocalFailedError string
	UnexpectedCommand   string
	ConnectionFailed    string
	FileTransferHelp    string
	TestsPassed         string
}
