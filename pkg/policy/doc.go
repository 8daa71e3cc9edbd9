// Package policy evaluates Open Policy Agent (Rego) policies against
// synthesized stack documents.
//
// Policies declare a deny rule in a cirrus.policies.* package. Each deny
// result is either a string message or an object with message, severity and
// resource keys. The engine feeds policies one resource at a time:
//
//	input.stack                      stack name
//	input.resource.logical_id        template logical ID
//	input.resource.type              e.g. "AWS::S3::Bucket"
//	input.resource.properties        resolved properties
//	input.resource.deletion_policy   DeletionPolicy, if set
//	input.resource.depends_on        explicit dependencies
//
// Violations with error or critical severity mark the result as not allowed;
// info and warning violations are reported without blocking.
//
// Built-in policies cover tagging conventions, deletion protection for
// stateful resources, and wildcard IAM grants. Additional policies load from
// .rego or .json files via LoadPolicies, and Loader.Watch reloads them when
// the files change.
package policy
