package composer

// =============================================================================
// Baseline Policy Attachments
// =============================================================================

// Policy documents attached to the shared execution role. The documents
// are fixed literals; generating policy text is outside the composer's
// responsibility.

const (
	policyStorageAccess = `{
  "Version": "2012-10-17",
  "Statement": [
    {"Effect": "Allow", "Action": ["s3:GetObject", "s3:PutObject", "s3:DeleteObject", "s3:ListBucket"], "Resource": "*"}
  ]
}`

	policyQueueAccess = `{
  "Version": "2012-10-17",
  "Statement": [
    {"Effect": "Allow", "Action": ["sqs:SendMessage", "sqs:ReceiveMessage", "sqs:DeleteMessage", "sqs:GetQueueAttributes"], "Resource": "*"}
  ]
}`

	policyNetworkAttachment = `{
  "Version": "2012-10-17",
  "Statement": [
    {"Effect": "Allow", "Action": ["ec2:CreateNetworkInterface", "ec2:DescribeNetworkInterfaces", "ec2:DeleteNetworkInterface"], "Resource": "*"}
  ]
}`
)
