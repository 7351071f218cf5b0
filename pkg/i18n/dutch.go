package i18n

func dutchSet() TranslationSet {
	return TranslationSet{
		NoHostNameError:     "zet host_name in een argument of in ~/.sshwrapper.config.",
		NotADirectoryError:  "pad '%s' is geen map.",
		PathNotFoundError:   "pad %s niet gevonden",
		NotALinkError:       "%s is geen link",
		CantSendDirToFile:   "%s is een bestand, kan er geen map naartoe sturen",
		CantRecvDirToFile:   "%s is een bestand, kan er geen map in ontvangen",
		ConnectionFailed:    "de verbinding met de server is verbroken",
		TestsPassed:         "test klaar!",
	}
}
