// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Cvmfs inspects CernVM-FS repositories without mounting them.
//
// It reads a repository from a Stratum 0/1 HTTP server, a local
// repository tree, or a name under /srv/cvmfs, verifies what it
// downloads, and keeps objects in a local cache:
//
//	cvmfs info --source http://stratum1.example.org/cvmfs/sft.example.org
//	cvmfs ls -l /lcg/releases
//	cvmfs cat /lcg/releases/setup.sh
//	cvmfs find /lcg --name '*.so' --type f
//	cvmfs verify --public-key /etc/cvmfs/keys/example.org.pub
//
// Settings come from the YAML file named by --config or
// $CVMFS_CLIENT_CONFIG; flags override it.
package main
