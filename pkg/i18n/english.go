package i18n

func englishSet() TranslationSet {
	return TranslationSet{
		NoHostNameError:     "please set host_name in argument or ~/.sshwrapper.config.",
		NotADirectoryError:  "path '%s' isn't a directory.",
		PathNotFoundError:   "path %s not found",
		NotALinkError:       "%s isn't a link",
		CantSendDirToFile:   "%s is a file, can't send dir to it",
		CantRecvDirToFile:   "%s is a file, can't recv dir to it",
		WrongSendArgsError:  "wrong options, need `%s local remote`.",
		WrongRecvArgsError:  "wrong options, need `%s remote local`.",
		WrongChdirArgsError: "wrong chdir path",
		RunLocalFailedError: "run %s failed",
		UnexpectedCommand:   "unexpected file transfer cmd: %s",
		ConnectionFailed:    "connection to the remote server was lost",
		TestsPassed:         "test done!",
		FileTransferHelp: `
    lls   -- run ` + "`ls`" + ` in local machine.
    lcd   -- run ` + "`cd`" + ` in local machine.
    lrm   -- run ` + "`rm`" + ` in local machine.
    lmkdir -- run ` + "`mkdir`" + ` in local machine.
    local cmd args...  -- run ` + "`cmd args...`" + ` in local machine.
    send local_path remote_path -- send local files to remote.
    recv remote_path local_path -- recv remote files to local.
    lcp   -- alias to send cmd.
    rcp   -- alias to recv cmd.
    test  -- run file transfer test.
`,
	}
}
