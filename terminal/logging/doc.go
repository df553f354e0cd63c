// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*

The context runtime emits internal logs only: the scheduler, the workers and
the session log through the package-level logrus logger into stderr.

Failures that are swallowed rather than propagated (a worker reply that does
not decode, a worker that panics, a payload that cannot be pumped) are logged
at warning level with two fields:

1. slot: the substrate slot id of the worker involved
2. label: a fatalerror.ErrorType naming the operation that failed

*/
package logging
