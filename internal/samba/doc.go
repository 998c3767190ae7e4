/*
Package samba administers a Samba Active Directory domain controller by running
samba-tool over SSH.

# Architecture Overview

The package is organized into four layers:

  - Session: one authenticated SSH connection with host-key verification and keep-alive
  - Executor: runs exactly one samba-tool invocation per call and captures its output
  - Parser: turns samba-tool text output into typed records
  - Directory: user, group, membership, password policy and domain operations

# Sessions

A Session is opened with Connect and must be passed explicitly to every
Directory method. Host keys are checked against an OpenSSH known_hosts file;
HostKeyPolicyAcceptNew records keys of hosts seen for the first time, but a key
that differs from a recorded one is always rejected. Commands on one Session
are serialized. A Session that dies is never revived.

# Errors

Every failure is an *Error with an ErrorKind, or a *PartialSuccessError for
composite operations that stopped midway. Use errors.Is with the Err* sentinels
or KindOf to branch:

	if errors.Is(err, samba.ErrNotFound) {
		// the object is gone
	}

Administrative commands are never retried automatically.

# Built-in principals

Accounts and groups created by domain provisioning (Administrator, krbtgt,
Domain Admins and so on) are filtered from user and group listings.
*/
package samba
