package command

// moderationStubs are the moderation command names reserved in the
// dispatch table. Each maps to the shared not-implemented handler until
// it grows real behavior.
var moderationStubs = []string{
	"ban", "kick", "mute", "unmute", "warn", "warnlist", "purge",
	"tempban", "softban", "forceban", "viewban", "listbans", "massban",
	"timeout", "untimeout", "nick", "setnick", "delnick", "roleadd", "roleremove",
	"rolecreate", "roledel", "forcerole", "lock", "unlock", "slowmode",
	"announce", "setwelcome", "setgoodbye", "purgeuser", "clearwarns", "warns",
	"modlog", "setmodlog", "slowmode_user", "masskick", "audit", "forceroleupdate",
	"backupserver", "restorebackup", "setrules", "lockdown", "endlockdown",
	"starboard", "setstarboard", "togglefeature", "setprefix", "getprefix",
	"blacklist", "unblacklist", "ghostping", "pruneinactive", "checkraid",
	"antispam", "antiraid", "setantiraid", "whitelist", "unwhitelist",
	"rolehierarchy", "managechannels", "createtext", "createvoice",
}
