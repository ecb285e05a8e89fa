// SPDX-License-Identifier: MIT

//go:build !(linux || darwin || freebsd)

package blobstore

func changeStamp(string) (string, bool) { return "", false }
